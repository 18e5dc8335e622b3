package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// Guard returns a Sender that scans the wire text of each batch and refuses
// it with ErrSecretDetected on any finding. Clean batches go to send.
func Guard(send channel.Sender, allowlist *Allowlist, logger *logging.Logger) channel.Sender {
	return func(ctx context.Context, list command.List) error {
		findings, err := Detect(command.Format(list), allowlist)
		if err != nil {
			return fmt.Errorf("scan outbound batch: %w", err)
		}
		if len(findings) > 0 {
			rules := RuleIDs(findings)
			logger.Warn(ctx, "refusing outbound batch",
				zap.Strings("rules", rules),
				zap.Int("findings", len(findings)),
				zap.Strings("commands", list.Commands()),
			)
			return fmt.Errorf("%w: %s", ErrSecretDetected, strings.Join(rules, ", "))
		}
		return send(ctx, list)
	}
}
