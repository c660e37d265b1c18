package errors

import (
	"fmt"
	"time"

	"github.com/go-lark/lark"
	"moff.io/moff-connector/pkg/log"
)

type larkReporter struct {
	title string
	bot   *lark.Bot
	delay *rateLimiter
}

// NewLarkReporter registers a lark notification bot as reporter. Errors raised from the same
// site are reported at most once per silent window.
func NewLarkReporter(webhook, title string, silent time.Duration) {
	if webhook == "" {
		log.Warn("empty lark webhook found, skipping lark reporter initialization.")
		return
	}
	Register(&larkReporter{
		title: title,
		bot:   lark.NewNotificationBot(webhook),
		delay: newRateLimiter(silent),
	})
	log.Info("Lark error reporter initialized.")
}

func (r *larkReporter) Report(err error) {
	if err == nil {
		return
	}
	stacks := callers()
	limited, stats := r.delay.StackBasedRateLimited(stacks.reportSite())
	if limited {
		return
	}
	pb := lark.NewPostBuilder()
	pb.Title(r.title)
	pb.TextTag(fmt.Sprintf("Last Report: %v", formatReportTime(stats.lastReportTime)), 1, true)
	pb.TextTag(fmt.Sprintf("\nError Count Since Last Report: %v", stats.occurCountSinceLastReport), 1, true)
	pb.TextTag(fmt.Sprintf("\nMessage: %v", err.Error()), 1, true)
	pb.TextTag("\nStacks:", 1, true)
	for _, s := range stacks.fullStack() {
		pb.TextTag(fmt.Sprintf("\n    %s", s), 1, true)
	}
	if _, err := r.bot.PostNotificationV2(lark.OutcomingMessage{
		MsgType: "post",
		Content: lark.MessageContent{
			Post: pb.Render(),
		},
	}); err != nil {
		log.Errorf("post lark notification:%v", err)
	}
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format("2006.01.02 15:04")
}
