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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ips(addrs ...string) []net.IP {
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, net.ParseIP(a))
	}
	return out
}

func TestIsSiteLocal(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.5", true},
		{"8.8.8.8", false},
		{"127.0.0.1", false},
		{"fec0::1", true},
		{"fe80::1", false},
		{"2001:db8::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSiteLocal(net.ParseIP(tt.addr)))
		})
	}
}

func TestSelectNonLoopback(t *testing.T) {
	tests := []struct {
		name   string
		ifaces []Interface
		want   string
	}{
		{
			name: "public address wins",
			ifaces: []Interface{
				{Name: "lo", Addrs: ips("127.0.0.1")},
				{Name: "wlan0", Addrs: ips("192.168.1.5")},
				{Name: "rmnet0", Addrs: ips("8.8.8.8")},
			},
			want: "8.8.8.8",
		},
		{
			name: "falls back to site-local",
			ifaces: []Interface{
				{Name: "lo", Addrs: ips("127.0.0.1")},
				{Name: "wlan0", Addrs: ips("192.168.1.5")},
			},
			want: "192.168.1.5",
		},
		{
			name: "last site-local seen",
			ifaces: []Interface{
				{Name: "eth0", Addrs: ips("10.0.0.2")},
				{Name: "wlan0", Addrs: ips("192.168.1.5")},
			},
			want: "192.168.1.5",
		},
		{
			name:   "loopback only",
			ifaces: []Interface{{Name: "lo", Addrs: ips("127.0.0.1", "::1")}},
		},
		{name: "no interfaces"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectNonLoopback(tt.ifaces)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSelectLoopback(t *testing.T) {
	ifaces := []Interface{
		{Name: "wlan0", Addrs: ips("192.168.1.5")},
		{Name: "lo", Addrs: ips("127.0.0.1", "::1")},
	}
	assert.Equal(t, "127.0.0.1", SelectLoopback(ifaces).String())

	assert.Nil(t, SelectLoopback([]Interface{{Name: "wlan0", Addrs: ips("192.168.1.5")}}))
}
