package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"Merem-Agent/sdk/go/merem"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg merem.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_ = json.NewEncoder(w).Encode(merem.Result{
			RoomID:    msg.RoomID,
			Action:    "BirdeyeToken",
			Success:   true,
			Responses: []merem.Content{{Text: "Current price of SOL: $142.5", Action: "BIRDEYE_TOKEN_PRICE_RESPONSE"}},
		})
	})
	mux.HandleFunc("/api/v1/actions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]merem.Action{{Name: "BirdeyeToken", Similes: []string{"GET_TOKEN_PRICE"}}})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := merem.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actions, err := client.ListActions(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("agent exposes %d action(s), first is %s\n", len(actions), actions[0].Name)

	result, err := client.SendMessage(ctx, merem.Message{
		UserID: "5f0c7a52-6c1e-4a57-9d55-3f2b8c1e9a10",
		RoomID: "0b6a3c1e-2f4d-4e8a-9b7c-1d2e3f4a5b6c",
		Text:   "what's the current SOL price?",
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("action %s answered: %s\n", result.Action, result.Responses[0].Text)
}
