package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// benchUser keeps the credentials the benchmark needs for follow-up calls.
type benchUser struct {
	UserID   int64
	Username string
	Token    string
}

// registerResp represents the server's response when a user is created.
type registerResp struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// PostReq defines the request payload for creating a new post.
type PostReq struct {
	Body string `json:"body"`
}

// Post represents a post entity returned by the API.
type Post struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Body           string    `json:"body"`
	Created        time.Time `json:"created"`
}

// feedResp mirrors the paginated feed payload.
type feedResp struct {
	Items   []Post `json:"items"`
	Page    int    `json:"page"`
	HasNext bool   `json:"has_next"`
	NextURL string `json:"next_url,omitempty"`
}

func main() {
	// CLI flags
	var serverAddr string
	var U, F, P, concurrency int
	var pollTimeout int

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "follows", 10, "average follows per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for post visibility")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]benchUser, 0, U)
	for i := 0; i < U; i++ {
		// Generate unique username and email
		name := fmt.Sprintf("user-%d-%d", i, time.Now().UnixNano())
		payload := map[string]string{
			"username": name,
			"email":    name + "@bench.local",
			"password": "bench-password",
		}
		b, _ := json.Marshal(payload)

		// Send POST request to create user
		resp, err := client.Post(serverAddr+"/users", "application/json", bytes.NewReader(b))
		if err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}

		var ur registerResp
		if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
			resp.Body.Close()
			fmt.Printf("decode user resp error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		users = append(users, benchUser{UserID: ur.UserID, Username: name, Token: ur.Token})
	}
	fmt.Println("Users created successfully.")

	// --- 2) Build a token map for quick authorization lookup ---
	userTokens := make(map[int64]string, len(users))
	for _, u := range users {
		userTokens[u.UserID] = u.Token
	}

	// --- 3) Create follow relationships between users ---
	fmt.Printf("Creating follows (~%d per user)...\n", F)
	followMap := make(map[int64][]int64)
	for _, u := range users {
		for j := 0; j < F; j++ {
			followee := users[rand.Intn(len(users))]
			if followee.UserID == u.UserID {
				continue
			}
			req, _ := http.NewRequestWithContext(ctx, "POST", serverAddr+"/follow/"+followee.Username, nil)
			req.Header.Set("Authorization", "Bearer "+u.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			resp.Body.Close()
			followMap[followee.UserID] = append(followMap[followee.UserID], u.UserID)
		}
	}
	fmt.Println("Follow relationships established.")

	// --- 4) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	type postRecord struct {
		PostID   int64
		AuthorID int64
		Created  time.Time
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter
	postsCh := make(chan postRecord, P)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			author := users[rand.Intn(len(users))]
			body := fmt.Sprintf("post %d", rand.Int())
			reqBody := PostReq{Body: body}
			b, _ := json.Marshal(reqBody)

			req, _ := http.NewRequestWithContext(ctx, "POST", serverAddr+"/posts", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+author.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}

			var p Post
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				resp.Body.Close()
				fmt.Printf("decode post error: %v\n", err)
				return
			}
			resp.Body.Close()
			postsCh <- postRecord{PostID: p.ID, AuthorID: p.AuthorID, Created: p.Created}
		}()
	}

	wg.Wait()
	close(postsCh)

	// --- 5) Verify post visibility in followers' feeds ---
	fmt.Println("Checking feed visibility...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var checksWg sync.WaitGroup

	for pr := range postsCh {
		followers := followMap[pr.AuthorID]
		for _, fid := range followers {
			checksWg.Add(1)
			go func(pr postRecord, fid int64) {
				defer checksWg.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
				found := false
				token := userTokens[fid]

				// Poll the feed until post appears or timeout
				for time.Now().Before(deadline) {
					req, _ := http.NewRequestWithContext(ctx, "GET", serverAddr+"/feed", nil)
					req.Header.Set("Authorization", "Bearer "+token)
					resp, err := client.Do(req)
					if err != nil {
						time.Sleep(200 * time.Millisecond)
						continue
					}

					var page feedResp
					if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
						resp.Body.Close()
						time.Sleep(200 * time.Millisecond)
						continue
					}
					resp.Body.Close()

					for _, pp := range page.Items {
						if pp.ID == pr.PostID {
							lat := time.Since(pr.Created).Seconds() * 1000
							latMu.Lock()
							latencies = append(latencies, lat)
							latMu.Unlock()
							found = true
							return
						}
					}
					time.Sleep(200 * time.Millisecond)
				}

				if !found {
					latMu.Lock()
					failCount++
					latMu.Unlock()
				}
			}(pr, fid)
		}
	}

	checksWg.Wait()

	// --- 6) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful checks recorded.")
	} else {
		trimPercent := 1.0
		meanVal := trimmedMean(latencies, trimPercent)
		p50 := trimmedPercentile(latencies, 50, trimPercent)
		p90 := trimmedPercentile(latencies, 90, trimPercent)
		p99 := trimmedPercentile(latencies, 99, trimPercent)
		fmt.Printf("Visibility stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
			len(latencies), meanVal, p50, p90, p99, failCount)

		// Export latencies to CSV
		f, _ := os.Create("e2e_latencies.csv")
		w := csv.NewWriter(f)
		w.Write([]string{"latency_ms"})
		for _, v := range latencies {
			w.Write([]string{fmt.Sprintf("%.3f", v)})
		}
		w.Flush()
		f.Close()
		fmt.Println("Saved e2e_latencies.csv")
	}
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
