package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/pkg/meshcore"
)

// defaultAdminPassword matches the repeater firmware default
const defaultAdminPassword = "password"

// RefreshContacts fetches the companion contact table. Called once per
// poll cycle; contact lookups between refreshes hit the cache.
func (c *Client) RefreshContacts(ctx context.Context) error {
	payload, err := c.roundTrip(ctx, meshcore.EncodeGetContacts())
	if err != nil {
		return err
	}

	contacts, err := meshcore.ParseContacts(payload)
	if err != nil {
		return malformed("contact table", payload, err)
	}

	c.mu.Lock()
	c.contacts = contacts
	c.mu.Unlock()

	log.Info().Int("contacts", len(contacts)).Msg("Loaded contacts from companion")
	return nil
}

// FindContact returns the cached contact matching a configured pubkey,
// by full key or prefix in either direction
func (c *Client) FindContact(pubkey string) (*meshcore.Contact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.contacts {
		if c.contacts[i].PublicKey.MatchesPrefix(pubkey) {
			contact := c.contacts[i]
			return &contact, true
		}
	}

	return nil, false
}

// GetStatus performs one full status poll of a repeater: apply the
// configured route (or reset to flood), authenticate, request status.
// Sub-calls go through the serialized transport individually so an
// interactive ping can interleave between them.
func (c *Client) GetStatus(ctx context.Context, repeater config.RepeaterSettings) (*meshcore.Status, *meshcore.Contact, error) {
	contact, found := c.FindContact(repeater.PublicKey)
	if !found {
		return nil, nil, ErrContactNotFound
	}

	c.applyPath(ctx, repeater, contact)

	if err := c.login(ctx, contact, repeater.AdminPassword); err != nil {
		return nil, contact, err
	}

	payload, err := c.roundTrip(ctx, meshcore.EncodeStatusRequest(contact.PublicKey))
	if err != nil {
		return nil, contact, err
	}

	status, err := meshcore.ParseStatus(payload)
	if err != nil {
		return nil, contact, malformed("status reply", payload, err)
	}

	return status, contact, nil
}

// SendPing performs an interactive liveness probe: authenticate and
// request status, measuring wall latency of the full exchange.
func (c *Client) SendPing(ctx context.Context, repeater config.RepeaterSettings) (time.Duration, error) {
	contact, found := c.FindContact(repeater.PublicKey)
	if !found {
		// A ping is user-triggered; the contact table may simply be
		// stale, so refresh once before giving up.
		if err := c.RefreshContacts(ctx); err != nil {
			return 0, err
		}
		contact, found = c.FindContact(repeater.PublicKey)
		if !found {
			return 0, ErrContactNotFound
		}
	}

	start := time.Now()

	if err := c.login(ctx, contact, repeater.AdminPassword); err != nil {
		return 0, err
	}

	payload, err := c.roundTrip(ctx, meshcore.EncodeStatusRequest(contact.PublicKey))
	if err != nil {
		return 0, err
	}
	if _, err := meshcore.ParseStatus(payload); err != nil {
		return 0, malformed("ping status reply", payload, err)
	}

	return time.Since(start), nil
}

// applyPath sets the configured fixed route, or resets to flood when
// none is configured. Path trouble is logged but never fails the poll;
// the status request decides success.
func (c *Client) applyPath(ctx context.Context, repeater config.RepeaterSettings, contact *meshcore.Contact) {
	if repeater.Path == "" {
		if _, err := c.roundTrip(ctx, meshcore.EncodeResetPath(contact.PublicKey)); err != nil {
			log.Debug().Err(err).Str("repeater", repeater.Name).Msg("Path reset failed")
		}
		return
	}

	path, err := meshcore.ParsePath(repeater.Path)
	if err != nil {
		log.Warn().Err(err).
			Str("repeater", repeater.Name).
			Str("path", repeater.Path).
			Msg("Invalid configured path, using flood")
		return
	}

	if _, err := c.roundTrip(ctx, meshcore.EncodeSetPath(contact.PublicKey, path)); err != nil {
		log.Warn().Err(err).Str("repeater", repeater.Name).Msg("Path update failed")
	}
}

// login authenticates against the repeater so it answers status requests
func (c *Client) login(ctx context.Context, contact *meshcore.Contact, password string) error {
	if password == "" {
		password = defaultAdminPassword
	}

	payload, err := c.roundTrip(ctx, meshcore.EncodeLogin(contact.PublicKey, password))
	if err != nil {
		return err
	}

	if _, err := meshcore.ParseResponse(payload); err != nil {
		if devErr, isDev := err.(*meshcore.DeviceError); isDev {
			log.Warn().
				Str("contact", contact.PublicKey.Short()).
				Uint8("code", devErr.Code).
				Msg("Repeater login rejected")
			return nil // 登录被拒后仍继续请求状态, 由状态应答决定成败
		}
		return malformed("login reply", payload, err)
	}

	return nil
}
