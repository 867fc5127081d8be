// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netbind

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/tombee/webhost/internal/log"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// Mode chooses which kind of interface address is preferred when no bind
// address is configured.
type Mode string

const (
	ModeLoopback    Mode = "loopback"
	ModeNonLoopback Mode = "non_loopback"
)

// Unspecified is shown when nothing better is known.
const Unspecified = "::"

// Result is a bind decision. An empty BindAddr binds all interfaces.
type Result struct {
	BindAddr string
	Display  string
}

// Resolver is the subset of *net.Resolver the selector needs.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Selector decides the listener bind address before each start.
type Selector struct {
	Resolver   Resolver
	Interfaces func(ctx context.Context) ([]Interface, error)
	Hostname   func() (string, error)
	Logger     *slog.Logger
}

// NewSelector returns a Selector backed by the system resolver and the
// host's interface table.
func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		Resolver:   net.DefaultResolver,
		Interfaces: SystemInterfaces,
		Hostname:   os.Hostname,
		Logger:     log.WithComponent(logger, "netbind"),
	}
}

// SystemInterfaces lists the host's interfaces and their addresses.
func SystemInterfaces(ctx context.Context) ([]Interface, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(stats))
	for _, st := range stats {
		iface := Interface{Name: st.Name}
		for _, a := range st.Addrs {
			if ip := parseAddr(a.Addr); ip != nil {
				iface.Addrs = append(iface.Addrs, ip)
			}
		}
		out = append(out, iface)
	}
	return out, nil
}

// parseAddr accepts both "10.0.0.1/24" and bare "10.0.0.1".
func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}

// Select picks the bind address. override is the configured bind address
// and takes precedence over mode. The returned Result is always usable;
// a non-nil error reports why selection degraded to a fallback.
func (s *Selector) Select(ctx context.Context, override string, mode Mode) (Result, error) {
	var degraded error
	var ifaces []Interface

	var ip net.IP
	if override != "" {
		resolved, err := s.resolve(ctx, override)
		if err != nil {
			degraded = &webhosterrors.AddressResolutionError{Host: override, Cause: err}
			s.Logger.Warn("cannot resolve bind address", "host", override, log.Error(err))
		} else {
			ip = resolved
		}
	} else {
		var err error
		ifaces, err = s.Interfaces(ctx)
		if err != nil {
			degraded = &webhosterrors.AddressResolutionError{Cause: err}
			s.Logger.Warn("cannot enumerate interfaces", log.Error(err))
		}
		if mode == ModeNonLoopback {
			ip = SelectNonLoopback(ifaces)
		} else {
			ip = SelectLoopback(ifaces)
		}
	}

	if ip != nil {
		name := s.canonicalName(ctx, ip)
		if name != "" && name != "null" {
			if !ip.IsUnspecified() {
				return Result{BindAddr: ip.String(), Display: name}, degraded
			}
			if ifaces == nil {
				ifaces, _ = s.Interfaces(ctx)
			}
			if nl := SelectNonLoopback(ifaces); nl != nil {
				return Result{Display: nl.String()}, degraded
			}
		}
	}

	return Result{Display: s.hostAddress(ctx)}, degraded
}

func (s *Selector) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := s.Resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	return addrs[0].IP, nil
}

// canonicalName reverse-resolves ip, falling back to its literal form.
func (s *Selector) canonicalName(ctx context.Context, ip net.IP) string {
	names, err := s.Resolver.LookupAddr(ctx, ip.String())
	if err != nil || len(names) == 0 {
		return ip.String()
	}
	return strings.TrimSuffix(names[0], ".")
}

// hostAddress is the first address of the local host name, or Unspecified.
func (s *Selector) hostAddress(ctx context.Context) string {
	host, err := s.Hostname()
	if err != nil || host == "" {
		return Unspecified
	}
	addrs, err := s.Resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return Unspecified
	}
	return addrs[0].IP.String()
}
