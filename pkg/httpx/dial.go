package httpx

import (
	"context"
	"fmt"
	"math/rand"
	"net"
)

// localAddrDialer returns a DialContext that binds outbound connections to
// bindAddress, or nil (use the default dialer) when bindAddress is empty.
func localAddrDialer(bindAddress string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if bindAddress == "" {
		return nil, nil
	}
	ip := net.ParseIP(bindAddress)
	if ip == nil {
		return nil, fmt.Errorf("invalid bind address %q", bindAddress)
	}
	dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
	return dialer.DialContext, nil
}

// jitterFraction returns a pseudo-random value in [-1, 1), used to spread
// out retry attempts from concurrent workers that all backed off at once.
func jitterFraction() float64 {
	return rand.Float64()*2 - 1
}
