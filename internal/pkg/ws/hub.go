package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	// 每个批次可以有多个连接（多标签页、重连等场景）
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	// BatchID 订阅的批次（或单个分析请求）的 ID
	BatchID string
	Conn    *websocket.Conn
	mu      sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.BatchID] == nil {
		h.clients[client.BatchID] = make(map[*Client]struct{})
	}
	h.clients[client.BatchID][client] = struct{}{}

	log.Printf("Subscriber connected for batch %s, conns: %d", client.BatchID, len(h.clients[client.BatchID]))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.BatchID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.BatchID)
		}
	}
	log.Printf("Subscriber disconnected for batch %s", client.BatchID)
}

// SendToBatch 向订阅指定批次的所有连接发送消息
func (h *Hub) SendToBatch(batchID string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[batchID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			log.Printf("SendToBatch write error for batch %s: %v", batchID, err)
		}
	}
	return nil
}

// HasSubscribers 批次是否有在线订阅者
func (h *Hub) HasSubscribers(batchID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[batchID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
