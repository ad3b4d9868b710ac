package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Token  string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8000", "server base url")

	// 并发建单测试参数：N 个顾客同时下单，校验订单号两两不同
	nUsers := flag.Int("users", 100, "distinct customers")
	concurrency := flag.Int("c", 25, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// 取目录里第一个商品，保证提交的总价与服务端重算一致。
	prod, err := firstProduct(client, *baseURL)
	if err != nil {
		panic(fmt.Sprintf("fetch products: %v", err))
	}
	fmt.Printf("using product id=%d price=%.2f\n", prod.ID, prod.Price)

	fmt.Printf("start token uniqueness test: users=%d concurrency=%d\n", *nUsers, *concurrency)
	results := runCreate(client, *baseURL, prod, *nUsers, *concurrency)
	printSummary(results)
}

type product struct {
	ID    uint    `json:"id"`
	Price float64 `json:"price"`
}

func firstProduct(client *http.Client, baseURL string) (product, error) {
	resp, err := client.Get(baseURL + "/api/products")
	if err != nil {
		return product{}, err
	}
	defer resp.Body.Close()
	var body struct {
		Data []product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return product{}, err
	}
	if len(body.Data) == 0 {
		return product{}, fmt.Errorf("empty catalog")
	}
	return body.Data[0], nil
}

func runCreate(client *http.Client, baseURL string, prod product, nUsers, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, nUsers)

	for i := 0; i < nUsers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			phone := fmt.Sprintf("9%09d", 100000000+i)
			token, err := signupAndLogin(client, baseURL, phone, i)
			if err != nil {
				results[i] = Result{Err: err}
				return
			}
			results[i] = createOrder(client, baseURL, token, prod)
		}(i)
	}
	wg.Wait()
	return results
}

// signupAndLogin 为压测用户注册并换取访问令牌；重复注册时退回登录。
func signupAndLogin(client *http.Client, baseURL, phone string, i int) (string, error) {
	signupBody := map[string]any{
		"name":    fmt.Sprintf("loadtest-%d", i),
		"phone":   phone,
		"email":   fmt.Sprintf("loadtest-%d@example.com", i),
		"address": "42 Test Street",
		"pin":     "1234",
	}
	if tok, err := postForToken(client, baseURL+"/api/auth/signup", signupBody); err == nil {
		return tok, nil
	}
	return postForToken(client, baseURL+"/api/auth/login", map[string]any{
		"identifier": phone,
		"pin":        "1234",
	})
}

func postForToken(client *http.Client, url string, payload map[string]any) (string, error) {
	b, _ := json.Marshal(payload)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, string(raw))
	}
	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.Data.AccessToken == "" {
		return "", fmt.Errorf("%s: empty access_token", url)
	}
	return body.Data.AccessToken, nil
}

func createOrder(client *http.Client, baseURL, accessToken string, prod product) Result {
	payload := map[string]any{
		"items": []map[string]any{
			{"product_id": prod.ID, "quantity": 1},
		},
		"total":         prod.Price,
		"delivery_type": "pickup",
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/orders", bytes.NewReader(b))
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	_ = json.Unmarshal(raw, &body)
	return Result{Status: resp.StatusCode, Token: body.Data.Token}
}

func printSummary(results []Result) {
	var ok, failed int
	tokens := map[string]int{}
	for _, r := range results {
		if r.Err != nil || r.Status != http.StatusOK || r.Token == "" {
			failed++
			continue
		}
		ok++
		tokens[r.Token]++
	}

	dup := 0
	for _, n := range tokens {
		if n > 1 {
			dup++
		}
	}

	fmt.Printf("success=%d failed=%d distinct_tokens=%d duplicate_tokens=%d\n", ok, failed, len(tokens), dup)
	if dup > 0 {
		fmt.Println("FAIL: duplicate order tokens issued under concurrency")
	} else {
		fmt.Println("OK: all issued tokens pairwise distinct")
	}
}
