package kfs

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultReplicas   = 3
	MaxReplicas       = 64
	MinStripeSize     = 4096
	MaxRecoveryStripe = 32
	MaxSTier          = 15
)

// Layout is how a file's chunks are replicated or striped.
type Layout struct {
	Replicas        int32 `json:"replicas"`
	Stripes         int32 `json:"stripes,omitempty"`
	RecoveryStripes int32 `json:"recovery_stripes,omitempty"`
	StripeSize      int32 `json:"stripe_size,omitempty"`
	StriperType     int32 `json:"striper_type"`
	MinSTier        uint8 `json:"min_stier"`
	MaxSTier        uint8 `json:"max_stier"`
}

// DefaultLayout is used when a file is created without parameters.
func DefaultLayout() Layout {
	return Layout{
		Replicas:    DefaultReplicas,
		StriperType: StriperNone,
		MinSTier:    MaxSTier,
		MaxSTier:    MaxSTier,
	}
}

// ParseCreateParams parses the create parameter string accepted by Open.
//
// An empty string selects DefaultLayout. "S" selects Reed-Solomon 6+3 with
// 64 KiB stripes. Otherwise params is a comma separated prefix of
//
//	replicas,stripes,recoveryStripes,stripeSize,striperType,minTier,maxTier
func ParseCreateParams(params string) (Layout, error) {
	params = strings.TrimSpace(params)
	switch params {
	case "":
		return DefaultLayout(), nil
	case "S":
		return Layout{
			Replicas:        1,
			Stripes:         6,
			RecoveryStripes: 3,
			StripeSize:      64 << 10,
			StriperType:     StriperRS,
			MinSTier:        MaxSTier,
			MaxSTier:        MaxSTier,
		}, nil
	}

	fields := strings.Split(params, ",")
	if len(fields) > 7 {
		return Layout{}, fmt.Errorf("create params %q: too many fields: %w", params, EINVAL)
	}
	var vals [7]int64
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return Layout{}, fmt.Errorf("create params %q: field %d: %w", params, i+1, EINVAL)
		}
		vals[i] = v
	}

	if vals[5] < 0 || vals[5] > MaxSTier || vals[6] < 0 || vals[6] > MaxSTier {
		return Layout{}, fmt.Errorf("create params %q: storage tier out of range: %w", params, EINVAL)
	}

	l := DefaultLayout()
	l.Replicas = int32(vals[0])
	if len(fields) > 1 {
		l.Stripes = int32(vals[1])
	}
	if len(fields) > 2 {
		l.RecoveryStripes = int32(vals[2])
	}
	if len(fields) > 3 {
		l.StripeSize = int32(vals[3])
	}
	switch {
	case len(fields) > 4:
		l.StriperType = int32(vals[4])
	case l.Stripes > 0:
		l.StriperType = StriperRS
	}
	if len(fields) > 5 {
		l.MinSTier = uint8(vals[5])
		l.MaxSTier = uint8(vals[5])
	}
	if len(fields) > 6 {
		l.MaxSTier = uint8(vals[6])
	}
	if err := l.Validate(); err != nil {
		return Layout{}, fmt.Errorf("create params %q: %w", params, err)
	}
	return l, nil
}

// Validate checks a layout for consistency.
func (l *Layout) Validate() error {
	if l.Replicas < 1 || l.Replicas > MaxReplicas {
		return fmt.Errorf("replicas %d out of range: %w", l.Replicas, EINVAL)
	}
	if l.MinSTier > MaxSTier || l.MaxSTier > MaxSTier || l.MinSTier > l.MaxSTier {
		return fmt.Errorf("storage tiers [%d,%d] invalid: %w", l.MinSTier, l.MaxSTier, EINVAL)
	}
	switch l.StriperType {
	case StriperNone:
		l.Stripes, l.RecoveryStripes, l.StripeSize = 0, 0, 0
	case StriperRS:
		if l.Stripes < 1 {
			return fmt.Errorf("striped layout needs data stripes: %w", EINVAL)
		}
		if l.RecoveryStripes < 0 || l.RecoveryStripes > MaxRecoveryStripe {
			return fmt.Errorf("recovery stripes %d out of range: %w", l.RecoveryStripes, EINVAL)
		}
		if l.StripeSize < MinStripeSize || l.StripeSize%MinStripeSize != 0 {
			return fmt.Errorf("stripe size %d must be a multiple of %d: %w", l.StripeSize, MinStripeSize, EINVAL)
		}
	default:
		return fmt.Errorf("unknown striper type %d: %w", l.StriperType, EINVAL)
	}
	return nil
}
