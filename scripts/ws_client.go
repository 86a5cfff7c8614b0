// Package main runs a demo WebSocket client for plan task events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func post(base, path string, body any, out any) {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		log.Fatalf("POST %s: %s", path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatal(err)
		}
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed a small fleet and one account
	post(base, "/v1/vehicles", map[string]any{"vehicles": []map[string]any{
		{"id": "van-1", "startLocation": map[string]float64{"lat": 40.71, "lon": -74.00}, "capacity": 3},
		{"id": "van-2", "startLocation": map[string]float64{"lat": 40.73, "lon": -73.99}, "capacity": 3},
	}}, nil)
	jobs := []map[string]any{}
	for i := 0; i < 6; i++ {
		kind := "pickup"
		if i%2 == 0 {
			kind = "delivery"
		}
		jobs = append(jobs, map[string]any{
			"id":       fmt.Sprintf("job-%d", i),
			"name":     fmt.Sprintf("Stop %d", i),
			"location": map[string]float64{"lat": 40.70 + float64(i)*0.01, "lon": -74.01 + float64(i)*0.005},
			"kind":     kind,
		})
	}
	post(base, "/v1/jobs", map[string]any{"accountName": "demo", "jobs": jobs}, nil)

	var task struct {
		TaskID string `json:"taskId"`
	}
	post(base, "/v1/plan-tasks", map[string]any{"accountName": "demo", "config": map[string]any{"metric": "haversine"}}, &task)
	log.Printf("Task ID: %s", task.TaskID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plan-tasks/" + task.TaskID + "/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Minute))
	for {
		var evt event
		if err := c.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("stream closed")
				return
			}
			log.Fatal("read:", err)
		}
		b, _ := json.Marshal(evt.Data)
		log.Printf("%s %s", evt.Type, b)
	}
}
