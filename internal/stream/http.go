package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// MP3Handler serves a chunked MP3 stream. Each connection runs its own
// ffmpeg process encoding the broadcast PCM in real time.
type MP3Handler struct {
	broadcaster *Broadcaster
	log         logging.LeveledLogger
	encoder     []string // command reading s16le on stdin, writing the stream on stdout
}

// NewMP3Handler creates an MP3 stream handler for PCM at rate.
func NewMP3Handler(b *Broadcaster, rate int, log logging.LeveledLogger) *MP3Handler {
	return &MP3Handler{
		broadcaster: b,
		log:         log,
		encoder: []string{
			"ffmpeg",
			"-f", "s16le",
			"-ar", strconv.Itoa(rate),
			"-ac", strconv.Itoa(audio.Channels),
			"-i", "pipe:0",
			"-codec:a", "libmp3lame",
			"-b:a", "192k",
			"-f", "mp3",
			"-fflags", "nobuffer",
			"-flush_packets", "1",
			"-loglevel", "error",
			"pipe:1",
		},
	}
}

func (h *MP3Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.encoder[0], h.encoder[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.log.Errorf("MP3 stream: stdin pipe: %v", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.log.Errorf("MP3 stream: stdout pipe: %v", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		h.log.Errorf("MP3 stream: start encoder: %v", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "pt3play")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.log.Infof("MP3 listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer h.log.Info("MP3 listener disconnected")

	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame := <-listener.C:
				if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.log.Debugf("MP3 stream: encoder read: %v", err)
			}
			break
		}
	}

	cancel()
	cmd.Wait()
}
