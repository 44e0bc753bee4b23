// Package main implements a small CLI client for the marketrag API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type askRequest struct {
	Question string `json:"question"`
	Method   string `json:"method,omitempty"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Domain     string   `json:"domain"`
}

func main() {
	_ = godotenv.Load()

	api := flag.String("api", envOr("MARKETRAG_API", "http://localhost:8080"), "API server base URL")
	method := flag.String("method", "smart", "search method: semantic, keyword, hybrid, smart")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-api URL] [-method METHOD] QUESTION")
		os.Exit(2)
	}

	if err := run(*api, *method, question); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(api, method, question string) error {
	body, err := json.Marshal(askRequest{Question: question, Method: method})
	if err != nil {
		return err
	}

	resp, err := http.Post(api+"/api/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var answer askResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	fmt.Println()
	fmt.Printf("도메인: %s / 신뢰도: %.2f\n", answer.Domain, answer.Confidence)
	if len(answer.Sources) > 0 {
		fmt.Printf("출처: %s\n", strings.Join(answer.Sources, ", "))
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
