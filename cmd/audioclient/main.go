// Command audioclient exercises the chunked upload flow against a running
// server: it creates a session, streams an audio file in timed chunks,
// finalizes, then starts an export job and polls it to completion.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// 100ms chunks at a typical 128kbit/s opus recording.
const chunkSize = 1600
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "../../testdata/sample.webm", "Path to audio file")
	serverAddr := flag.String("server", "http://localhost:8000", "Server base URL")
	mimeType := flag.String("mime", "audio/webm", "Audio MIME type")
	title := flag.String("title", "Audio Client Test "+time.Now().Format("150405"), "Export title")
	template := flag.String("template", "quick", "Summary template")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	clientID := "audioclient-" + uuid.NewString()[:8]

	// Create a session
	var session struct {
		ID string `json:"id"`
	}
	if err := postJSON(*serverAddr+"/api/sessions", map[string]string{"clientId": clientID}, &session); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("Session created: %s (client %s)", session.ID, clientID)

	// Stream the file in timed chunks to simulate a live recorder
	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		url := fmt.Sprintf("%s/api/recordings/%s/audio/chunks/%d", *serverAddr, session.ID, chunkNum)
		if err := putChunk(url, clientID, chunk[:n]); err != nil {
			log.Fatalf("Failed to upload chunk %d: %v", chunkNum, err)
		}

		chunkNum++
		totalBytes += int64(n)
		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Printf("Finished uploading: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))

	// Finalize
	var finalized struct {
		Status string `json:"status"`
		Bytes  int64  `json:"bytes"`
	}
	err = postJSONWithHeaders(
		fmt.Sprintf("%s/api/recordings/%s/audio/finalize", *serverAddr, session.ID),
		map[string]any{"mimeType": *mimeType, "uploadedChunkCount": chunkNum},
		map[string]string{"X-Client-ID": clientID},
		&finalized)
	if err != nil {
		log.Fatalf("Failed to finalize: %v", err)
	}
	log.Printf("Finalized: %s (%d bytes)", finalized.Status, finalized.Bytes)

	// Export and poll
	var job struct {
		JobID   string `json:"jobId"`
		PollURL string `json:"pollUrl"`
	}
	err = postJSON(
		fmt.Sprintf("%s/api/recordings/%s/export", *serverAddr, session.ID),
		map[string]string{"title": *title, "template": *template},
		&job)
	if err != nil {
		log.Fatalf("Failed to start export: %v", err)
	}
	log.Printf("Export job started: %s", job.JobID)

	for {
		var status struct {
			Status          string  `json:"status"`
			Stage           string  `json:"stage"`
			OverallProgress float64 `json:"overallProgress"`
			Error           string  `json:"error"`
			Result          *struct {
				Filename string `json:"filename"`
				URI      string `json:"uri"`
			} `json:"result"`
		}
		if err := getJSON(*serverAddr+job.PollURL, &status); err != nil {
			log.Fatalf("Failed to poll job: %v", err)
		}

		log.Printf("Job %s: %s/%s %.0f%%", job.JobID, status.Status, status.Stage, status.OverallProgress*100)
		if status.Status == "completed" {
			log.Printf("Export complete: %s (%s)", status.Result.Filename, status.Result.URI)
			return
		}
		if status.Status == "failed" {
			log.Fatalf("Export failed: %s", status.Error)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func putChunk(url, clientID string, data []byte) error {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Client-ID", clientID)
	return checkResponse(http.DefaultClient.Do(req))
}

func postJSON(url string, body, out any) error {
	return postJSONWithHeaders(url, body, nil, out)
}

func postJSONWithHeaders(url string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	return decodeResponse(resp, err, out)
}

func getJSON(url string, out any) error {
	resp, err := http.DefaultClient.Get(url)
	return decodeResponse(resp, err, out)
}

func checkResponse(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func decodeResponse(resp *http.Response, err error, out any) error {
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
