package wiki

import (
	"context"
	"fmt"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
)

const metaKeyMode = "mode"

// ModeGate reads and writes a wiki's mode. The mode is a key/value row in the
// wiki's own meta table, so each wiki id carries its own setting.
type ModeGate struct {
	b        store.Backend
	fallback Mode
}

// NewModeGate returns a gate that reports fallback for wikis with no stored mode.
func NewModeGate(b store.Backend, fallback Mode) *ModeGate {
	if fallback == "" {
		fallback = ModeInternet
	}
	return &ModeGate{b: b, fallback: fallback}
}

func (g *ModeGate) table(sc Scope) store.Table {
	return g.b.Table(sc.WikiID, tableMeta)
}

func (g *ModeGate) GetMode(ctx context.Context, sc Scope) (Mode, error) {
	rec, err := store.Find(ctx, g.table(sc), store.ColumnEquals("key", metaKeyMode))
	if err != nil {
		return "", fmt.Errorf("reading mode: %w", err)
	}
	if rec == nil {
		return g.fallback, nil
	}
	m, err := ParseMode(rec.Row["value"])
	if err != nil {
		return "", fmt.Errorf("stored mode of wiki %s: %v", sc.WikiID, err)
	}
	return m, nil
}

func (g *ModeGate) SetMode(ctx context.Context, sc Scope, m Mode) error {
	t := g.table(sc)
	rec, err := store.Find(ctx, t, store.ColumnEquals("key", metaKeyMode))
	if err != nil {
		return fmt.Errorf("reading mode: %w", err)
	}
	row := store.Row{"key": metaKeyMode, "value": string(m)}
	if rec == nil {
		_, err = t.Append(ctx, row)
	} else {
		err = t.Update(ctx, rec.Key, row)
	}
	if err != nil {
		return fmt.Errorf("writing mode: %w", err)
	}
	return nil
}

// Require returns ErrFeatureUnavailable unless the wiki is in internet mode.
func (g *ModeGate) Require(ctx context.Context, sc Scope) error {
	m, err := g.GetMode(ctx, sc)
	if err != nil {
		return err
	}
	if m != ModeInternet {
		return ErrFeatureUnavailable
	}
	return nil
}
