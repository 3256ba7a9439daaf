package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/tikozap/backend/internal/utils"
)

type MockGenerator struct {
	ModelVersion string
}

var mockTemplates = []string{
	"Thanks for reaching out! I've noted your question about %q. A teammate can take over anytime if you'd like a human to help.",
	"Good question. You can try the safe preview first, then follow the setup path in your dashboard. Want me to hand this to a teammate?",
	"Here's the starter link to get going: https://tikozap.com/start. If anything looks off, I can connect you with a human.",
}

func (m MockGenerator) Reply(ctx context.Context, req ReplyRequest) (ReplyResult, int64, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return ReplyResult{}, 0, err
	}
	h := utils.HashStringToUint64(req.Text)
	tpl := mockTemplates[int(h%uint64(len(mockTemplates)))]
	text := tpl
	if h%uint64(len(mockTemplates)) == 0 {
		text = fmt.Sprintf(tpl, req.Text)
	}
	return ReplyResult{Text: text, ModelVersion: m.ModelVersion}, time.Since(start).Milliseconds(), nil
}
