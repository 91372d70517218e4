// Package redis is an oracle substrate backed by Redis. The admin is a
// string key, relayers a set and every symbol a hash.
package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"stdref/internal/oracle"
)

const (
	fieldRate        = "rate"
	fieldResolveTime = "resolve_time"
	fieldRequestID   = "request_id"
)

// Store implements oracle.Substrate.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ oracle.Substrate = (*Store)(nil)

// New wraps client; every key is prefixed with prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open dials addr and pings it.
func Open(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}
	return New(c, prefix), nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) adminKey() string    { return s.prefix + "admin" }
func (s *Store) relayersKey() string { return s.prefix + "relayers" }

func (s *Store) refKey(symbol oracle.Symbol) string {
	return s.prefix + "ref:" + string(symbol)
}

func (s *Store) LoadAdmin(ctx context.Context) (oracle.Identity, bool, error) {
	v, err := s.client.Get(ctx, s.adminKey()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "load admin")
	}
	return oracle.Identity(v), true, nil
}

func (s *Store) StoreAdmin(ctx context.Context, id oracle.Identity) error {
	return errors.Wrap(s.client.Set(ctx, s.adminKey(), string(id), 0).Err(), "store admin")
}

func (s *Store) HasRelayer(ctx context.Context, id oracle.Identity) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.relayersKey(), string(id)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "has relayer %s", id)
	}
	return ok, nil
}

func (s *Store) PutRelayer(ctx context.Context, id oracle.Identity) error {
	return errors.Wrapf(s.client.SAdd(ctx, s.relayersKey(), string(id)).Err(), "put relayer %s", id)
}

func (s *Store) DeleteRelayer(ctx context.Context, id oracle.Identity) error {
	return errors.Wrapf(s.client.SRem(ctx, s.relayersKey(), string(id)).Err(), "delete relayer %s", id)
}

func (s *Store) GetDatum(ctx context.Context, symbol oracle.Symbol) (oracle.ReferenceDatum, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.refKey(symbol)).Result()
	if err != nil {
		return oracle.ReferenceDatum{}, false, errors.Wrapf(err, "get datum %s", symbol)
	}
	if len(fields) == 0 {
		return oracle.ReferenceDatum{}, false, nil
	}
	d, err := decodeDatum(fields)
	if err != nil {
		return oracle.ReferenceDatum{}, false, errors.Wrapf(err, "decode datum %s", symbol)
	}
	return d, true, nil
}

func (s *Store) PutDatum(ctx context.Context, symbol oracle.Symbol, d oracle.ReferenceDatum) error {
	err := s.client.HSet(ctx, s.refKey(symbol), encodeDatum(d)).Err()
	return errors.Wrapf(err, "put datum %s", symbol)
}

func encodeDatum(d oracle.ReferenceDatum) map[string]interface{} {
	return map[string]interface{}{
		fieldRate:        strconv.FormatUint(d.Rate, 10),
		fieldResolveTime: strconv.FormatUint(d.ResolveTime, 10),
		fieldRequestID:   strconv.FormatUint(d.RequestID, 10),
	}
}

func decodeDatum(fields map[string]string) (oracle.ReferenceDatum, error) {
	var d oracle.ReferenceDatum
	for name, dst := range map[string]*uint64{
		fieldRate:        &d.Rate,
		fieldResolveTime: &d.ResolveTime,
		fieldRequestID:   &d.RequestID,
	} {
		raw, ok := fields[name]
		if !ok {
			return oracle.ReferenceDatum{}, errors.Errorf("missing field %q", name)
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return oracle.ReferenceDatum{}, errors.Wrapf(err, "field %q", name)
		}
		*dst = v
	}
	return d, nil
}
