//go:build !darwin && !linux

package power

import (
	"context"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

type unsupportedProvider struct{}

func newProvider() Provider {
	return &unsupportedProvider{}
}

func (p *unsupportedProvider) CreateHold(ctx context.Context, c Category) (Hold, error) {
	return nil, wherrors.New(wherrors.CodePowerUnsupported, "sleep prevention is not supported on this platform")
}

func (p *unsupportedProvider) SleepDisabled() (bool, error) {
	return false, wherrors.New(wherrors.CodePowerUnsupported, "sleep state query is not supported on this platform")
}

func (p *unsupportedProvider) WakeDisplay() error {
	return wherrors.New(wherrors.CodePowerUnsupported, "waking the display is not supported on this platform")
}
