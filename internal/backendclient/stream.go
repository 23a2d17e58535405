package backendclient

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"example.com/prayer/internal/events"
)

// SubscribeInserts opens the change stream. The returned channel is closed when the stream
// drops or ctx ends.
func (c *Client) SubscribeInserts(ctx context.Context) (<-chan events.EntryCreated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	out := make(chan events.EntryCreated, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, resp, out)
	}()
	return out, nil
}

// readEvents forwards every entry.created frame. The payload is informational only: a frame that
// fails to decode is still delivered, as a zero EntryCreated.
func readEvents(ctx context.Context, resp *http.Response, out chan<- events.EntryCreated) {
	scanner := bufio.NewScanner(resp.Body)
	var name string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name == events.TypeEntryCreated {
				var evt events.EntryCreated
				if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
					evt = events.EntryCreated{}
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
