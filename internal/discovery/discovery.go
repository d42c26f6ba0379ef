// Package discovery optionally advertises the channel's TCP endpoint over
// mDNS/DNS-SD, grounded on the teacher's dns_sd.go (which announces its KISS
// TCP service the same way). It is a convenience layered on top of the fixed
// Channel.Host/Channel.Port contract, never a replacement for it.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type under which the channel endpoint is
// advertised.
const ServiceType = "_aerowave-channel._tcp"

// Announce advertises the channel's TCP port under name until ctx is
// cancelled. Announcement failures are logged and treated as non-fatal,
// since discovery is always an optional convenience.
func Announce(ctx context.Context, logger *log.Logger, name string, port int) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		logger.Error("discovery: failed to create service", "err", err)
		return
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		logger.Error("discovery: failed to create responder", "err", err)
		return
	}

	if _, err := responder.Add(service); err != nil {
		logger.Error("discovery: failed to add service", "err", err)
		return
	}

	logger.Info("discovery: announcing channel", "name", name, "port", port)

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("discovery: responder error", "err", err)
		}
	}()
}

// Lookup browses for the first aerowave channel instance on the network and
// returns a "host:port" string, blocking until found or ctx is cancelled.
func Lookup(ctx context.Context) (string, error) {
	found := make(chan string, 1)

	addFn := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		select {
		case found <- fmt.Sprintf("%s:%d", e.IPs[0], e.Port):
		default:
		}
	}
	rmvFn := func(dnssd.BrowseEntry) {}

	go func() {
		_ = dnssd.LookupType(ctx, ServiceType, addFn, rmvFn)
	}()

	select {
	case addr := <-found:
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
