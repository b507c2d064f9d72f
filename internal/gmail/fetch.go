package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mailbrief/internal/model"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// fetchWorkers bounds the concurrent Threads.Get calls while paging.
const fetchWorkers = 16

// FetchThreads retrieves inbox threads for the authenticated user with full
// message data. It streams thread IDs from the list endpoint and hydrates
// them concurrently; the returned slice follows listing order regardless of
// hydration order. maxThreads caps the total when positive. Spam/trash are
// excluded unless includeSpamTrash. The function respects ctx for
// cancelation; individual hydration failures are logged and skipped rather
// than failing the batch.
func FetchThreads(ctx context.Context, svc *gmailv1.Service, includeSpamTrash bool, maxThreads int, log *zap.Logger) ([]model.Thread, error) {
	user := "me"

	var ids []string
	pageToken := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		call := svc.Users.Threads.List(user).
			IncludeSpamTrash(includeSpamTrash).
			LabelIds("INBOX").
			MaxResults(100)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
			if maxThreads > 0 && len(ids) >= maxThreads {
				break
			}
		}
		if resp.NextPageToken == "" || (maxThreads > 0 && len(ids) >= maxThreads) {
			break
		}
		pageToken = resp.NextPageToken
	}

	type job struct {
		idx int
		id  string
	}

	// Slots indexed by listing position keep output order independent of
	// completion order.
	slots := make([]*model.Thread, len(ids))
	jobs := make(chan job)

	var wg sync.WaitGroup
	wg.Add(fetchWorkers)
	for w := 0; w < fetchWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				resp, err := svc.Users.Threads.Get(user, j.id).Format("full").Do()
				if err != nil {
					log.Warn("fetch thread failed, skipping",
						zap.String("thread_id", j.id), zap.Error(err))
					continue
				}
				t := model.Thread{ID: resp.Id}
				for _, m := range resp.Messages {
					t.Messages = append(t.Messages, buildMessage(m, resp.Id))
				}
				slots[j.idx] = &t
			}
		}()
	}

	for i, id := range ids {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- job{idx: i, id: id}:
		}
	}
	close(jobs)
	wg.Wait()

	threads := make([]model.Thread, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			threads = append(threads, *t)
		}
	}
	log.Info("fetched threads", zap.Int("listed", len(ids)), zap.Int("hydrated", len(threads)))
	return threads, nil
}

// buildMessage converts one Gmail API message into the pipeline's record
// type, preserving header order and extracting the fields classification
// and fingerprinting depend on.
func buildMessage(m *gmailv1.Message, threadID string) model.Message {
	msg := model.Message{
		ID:           m.Id,
		ThreadID:     threadID,
		Labels:       m.LabelIds,
		InternalDate: m.InternalDate,
	}
	if m.Payload == nil {
		return msg
	}

	for _, h := range m.Payload.Headers {
		msg.Headers = append(msg.Headers, model.Header{Name: h.Name, Value: h.Value})
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.From = h.Value
		case "to":
			msg.To = splitAddresses(h.Value)
		case "date":
			msg.Date = h.Value
		}
	}
	msg.Body = messageBody(m.Payload)
	return msg
}

func splitAddresses(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
