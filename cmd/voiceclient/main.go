package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkSize = 3200
const chunkIntervalMs = 100

type sessionView struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Transcript string `json:"transcript"`
	Interim    string `json:"interim"`
	Status     string `json:"status"`
	Notice     string `json:"notice"`
	Provider   string `json:"provider"`
}

type frame struct {
	Seq    uint64 `json:"seq"`
	Active bool   `json:"active"`
	Path   string `json:"path"`
}

type sendResult struct {
	Message  string `json:"message"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

func main() {
	audioFile := flag.String("audio", "", "Path to WAV file (16-bit mono PCM); silence is sent when empty")
	serverURL := flag.String("server", "http://localhost:8080", "Voice chat service base URL")
	seconds := flag.Int("seconds", 3, "Seconds of silence to send when no audio file is given")
	watch := flag.Bool("watch", true, "Print waveform frame statistics")
	flag.Parse()

	base := strings.TrimRight(*serverURL, "/")
	client := &http.Client{Timeout: 30 * time.Second}

	audio, err := loadAudio(*audioFile, *seconds)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	var view sessionView
	if err := call(client, http.MethodPost, base+"/v1/voice/sessions/", nil, &view); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	sessionURL := base + "/v1/voice/sessions/" + view.ID
	log.Printf("Session %s created (provider=%s)", view.ID, view.Provider)

	done := make(chan struct{})
	if *watch {
		go watchWaveform(strings.Replace(sessionURL, "http", "ws", 1)+"/waveform", done)
	} else {
		close(done)
	}

	if err := call(client, http.MethodPost, sessionURL+"/start", nil, &view); err != nil {
		log.Fatalf("Failed to start recording: %v", err)
	}
	log.Printf("Recording: %s", view.Status)

	// Stream audio in chunks to simulate a live microphone
	var chunkNum int
	startTime := time.Now()
	for off := 0; off < len(audio); off += chunkSize {
		end := min(off+chunkSize, len(audio))
		if err := call(client, http.MethodPost, sessionURL+"/audio", audio[off:end], nil); err != nil {
			log.Printf("Audio chunk rejected: %v", err)
			break
		}
		chunkNum++
		if chunkNum%10 == 0 {
			if err := call(client, http.MethodGet, sessionURL, nil, &view); err == nil {
				log.Printf("Sent %d chunks, transcript=%q interim=%q", chunkNum, view.Transcript, view.Interim)
			}
		}
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}
	log.Printf("Finished streaming: %d chunks in %v", chunkNum, time.Since(startTime))

	if err := call(client, http.MethodPost, sessionURL+"/stop", nil, &view); err != nil {
		log.Fatalf("Failed to stop recording: %v", err)
	}
	log.Printf("Stopped: %s", view.Status)

	var res sendResult
	if err := call(client, http.MethodPost, sessionURL+"/send", nil, &res); err != nil {
		log.Fatalf("Failed to send: %v", err)
	}
	log.Printf("You: %s", res.Message)
	log.Printf("Assistant: %s", res.Response)

	call(client, http.MethodDelete, sessionURL, nil, nil)
	<-done
}

// loadAudio returns the PCM payload of a WAV file, or silence.
func loadAudio(path string, seconds int) ([]byte, error) {
	if path == "" {
		return make([]byte, seconds*32000), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	numChannels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		return nil, fmt.Errorf("only PCM format supported")
	}
	return data[wavHeaderSize:], nil
}

func call(client *http.Client, method, url string, body []byte, out any) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		return json.Unmarshal(payload, out)
	}
	return nil
}

// watchWaveform logs a summary of received frames until the stream closes.
func watchWaveform(url string, done chan<- struct{}) {
	defer close(done)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Printf("Failed to open waveform stream: %v", err)
		return
	}
	defer conn.Close()

	var total, active int
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Printf("Waveform stream closed: %d frames, %d active", total, active)
			return
		}
		total++
		if f.Active {
			active++
		}
		if total%60 == 0 {
			log.Printf("Waveform frame %d active=%v", f.Seq, f.Active)
		}
	}
}
