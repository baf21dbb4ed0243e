package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Create User
	userID := "e2e-user"
	checkEndpoint("POST", "/users", map[string]interface{}{"id": userID, "name": "E2E User"}, 201)

	// 3. Create Holding
	holdingID := createHolding(userID)
	fmt.Printf("Created Holding ID: %s\n", holdingID)

	// 4. Buy then partial sell
	createTransaction(holdingID, "BUY", "0.5", "40000", -48)
	createTransaction(holdingID, "BUY", "0.5", "60000", -24)
	createTransaction(holdingID, "SELL", "0.25", "70000", -1)

	// 5. Oversized sell must be rejected
	checkEndpoint("POST", "/holdings/"+holdingID+"/transactions", map[string]interface{}{
		"type":           "SELL",
		"quantity":       "100",
		"price_per_unit": "70000",
		"date":           time.Now().Add(-time.Hour).Format(time.RFC3339),
	}, 422)

	// 6. Transaction list + stats
	checkEndpoint("GET", "/holdings/"+holdingID+"/transactions", nil, 200)

	// 7. Portfolio valuation
	checkEndpoint("GET", "/portfolios/"+userID, nil, 200)

	// 8. Cleanup
	checkEndpoint("DELETE", "/holdings/"+holdingID, nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}

func createHolding(userID string) string {
	body := checkEndpoint("POST", "/portfolios/"+userID+"/holdings", map[string]interface{}{
		"symbol": "BTC",
		"name":   "Bitcoin",
	}, 201)

	var res map[string]interface{}
	json.Unmarshal(body, &res)
	id, _ := res["id"].(string)
	if id == "" {
		log.Fatalf("Create holding returned no id: %s", string(body))
	}
	return id
}

func createTransaction(holdingID, txType, quantity, price string, hoursAgo int) {
	checkEndpoint("POST", "/holdings/"+holdingID+"/transactions", map[string]interface{}{
		"type":           txType,
		"quantity":       quantity,
		"price_per_unit": price,
		"date":           time.Now().Add(time.Duration(hoursAgo) * time.Hour).Format(time.RFC3339),
	}, 201)
}
