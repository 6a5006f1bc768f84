package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/attachextract/internal/logging"
)

// PreviewMessage lists the qualifying attachments of one message.
type PreviewMessage struct {
	ID          string     `json:"id"`
	ThreadID    string     `json:"threadId"`
	Subject     string     `json:"subject"`
	Attachments []PartMeta `json:"attachments"`
}

// PreviewReport is the result of a metadata-only pass.
type PreviewReport struct {
	Scanned     int              `json:"scanned"`
	Messages    []PreviewMessage `json:"messages"`
	Attachments int              `json:"attachments"`
	Bytes       int64            `json:"bytes"`
	Truncated   bool             `json:"truncated"`
}

// Preview runs the metadata pre-check over the messages matching the query
// and reports which attachments a run would extract. Nothing is fetched in
// raw form and nothing is written. At most limit messages are scanned when
// limit is positive.
func (e *Extractor) Preview(ctx context.Context, limit int) (*PreviewReport, error) {
	report := &PreviewReport{}
	token := ""
	for {
		page, err := e.source.ListMessages(ctx, e.opts.Query, token)
		if err != nil {
			return report, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, ref := range page.Messages {
			if limit > 0 && report.Scanned >= limit {
				report.Truncated = true
				return report, nil
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			meta, err := e.source.GetMessage(ctx, ref.ID)
			if err != nil {
				return report, fmt.Errorf("failed to get message %s: %w", ref.ID, err)
			}
			report.Scanned++

			var parts []PartMeta
			for _, p := range meta.Parts {
				if !meta.SinglePart && e.opts.Filter.Satisfies(p.Filename, p.MimeType, p.Size) {
					parts = append(parts, p)
					report.Bytes += p.Size
				}
			}
			if len(parts) == 0 {
				continue
			}
			report.Attachments += len(parts)
			report.Messages = append(report.Messages, PreviewMessage{
				ID:          meta.ID,
				ThreadID:    meta.ThreadID,
				Subject:     meta.Subject,
				Attachments: parts,
			})
			e.logger.Debug("preview candidate",
				slog.String(logging.KeyMessageID, meta.ID),
				slog.Int("attachments", len(parts)))
		}
		if page.NextPageToken == "" || len(page.Messages) == 0 {
			return report, nil
		}
		token = page.NextPageToken
	}
}
