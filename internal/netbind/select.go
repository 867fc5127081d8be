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

// Package netbind picks the address the host listener binds to and the
// address shown to operators.
package netbind

import (
	"net"
)

// Interface is one network interface and the addresses assigned to it.
type Interface struct {
	Name  string
	Addrs []net.IP
}

var siteLocalNets = []*net.IPNet{
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
	mustCIDR("fec0::/10"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// IsSiteLocal reports whether ip is in 10/8, 172.16/12, 192.168/16 or fec0::/10.
func IsSiteLocal(ip net.IP) bool {
	for _, n := range siteLocalNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// SelectLoopback returns the first loopback address that is not site-local,
// or the last loopback address seen, or nil.
func SelectLoopback(ifaces []Interface) net.IP {
	return selectAddr(ifaces, true)
}

// SelectNonLoopback returns the first non-loopback address that is not
// site-local, or the last site-local non-loopback address seen, or nil.
func SelectNonLoopback(ifaces []Interface) net.IP {
	return selectAddr(ifaces, false)
}

func selectAddr(ifaces []Interface, loopback bool) net.IP {
	var last net.IP
	for _, iface := range ifaces {
		for _, ip := range iface.Addrs {
			if ip == nil || ip.IsLoopback() != loopback {
				continue
			}
			if !IsSiteLocal(ip) {
				return ip
			}
			last = ip
		}
	}
	return last
}
