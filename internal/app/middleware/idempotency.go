package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/services/auth"
)

// ErrIdempotencyKeyReused is returned when a key comes back with a different
// command payload than the one it was first used with.
var ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")

// IdempotentCommand is a command whose result can be replayed by key.
// ResultPrototype returns a pointer the stored result decodes into.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	Payload     []byte
	OccurredAt  time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

// Idempotency replays the stored result of a command whose key was already
// handled for the same actor. Only successes are stored, so a failed attempt
// may be retried with the same key.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return CommandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idem, ok := cmd.(IdempotentCommand)
			if !ok || idem.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scopedKey(ctx, idem)
			fingerprint, err := fingerprintOf(cmd)
			if err != nil {
				return nil, err
			}

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("idempotency lookup: %w", err)
			}
			if found {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					return nil, ErrIdempotencyKeyReused
				}
				return replay(codec, rec, idem.ResultPrototype())
			}

			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			rec = IdempotencyRecord{Key: key, Fingerprint: fingerprint, OccurredAt: time.Now().UTC()}
			if res != nil {
				if rec.Payload, err = codec.Encode(res); err != nil {
					return nil, fmt.Errorf("idempotency encode: %w", err)
				}
			}
			if err := store.Save(ctx, rec); err != nil {
				return nil, fmt.Errorf("idempotency save: %w", err)
			}
			return res, nil
		})
	}
}

// scopedKey keeps keys from different actors apart.
func scopedKey(ctx context.Context, cmd IdempotentCommand) string {
	actor := "anonymous"
	if a, ok := auth.ActorFromContext(ctx); ok && a.ID != "" {
		actor = a.ID
	}
	return cmd.Key() + ":" + actor + ":" + cmd.IdempotencyKey()
}

func fingerprintOf(cmd commands.Command) (string, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("idempotency fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func replay(codec ResultCodec, rec IdempotencyRecord, proto any) (any, error) {
	if proto == nil || reflect.ValueOf(proto).Kind() != reflect.Pointer {
		return nil, errors.New("middleware: idempotent command needs a pointer result prototype")
	}
	if len(rec.Payload) == 0 {
		return proto, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return proto, nil
}
