package notification

import (
	"fmt"

	"github.com/NordCoder/pingboard/internal/domain/status"
)

// Title is the short headline for a transition of the named target.
func Title(name string, tr status.Transition) string {
	return fmt.Sprintf("%s is %s", name, tr.To)
}

func Body(url string, tr status.Transition) string {
	return fmt.Sprintf("%s changed from %s to %s at %s", url, tr.From, tr.To, tr.At.UTC().Format("15:04:05 MST"))
}
