package yahoo

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"
)

// TorController asks a Tor daemon for a new exit identity over its control port.
type TorController struct {
	Addr     string // host:port of the control port
	Password string
	Timeout  time.Duration
}

// NewIdentity authenticates and sends SIGNAL NEWNYM.
// The new circuit affects every process that uses the same Tor daemon.
func (t *TorController) NewIdentity(ctx context.Context) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("dial tor control: %w", err)
	}
	defer raw.Close()
	if deadline, ok := ctx.Deadline(); ok {
		raw.SetDeadline(deadline)
	}

	conn := textproto.NewConn(raw)
	password := strings.ReplaceAll(t.Password, `"`, `\"`)
	for _, cmd := range []string{`AUTHENTICATE "` + password + `"`, "SIGNAL NEWNYM", "QUIT"} {
		if err := conn.PrintfLine("%s", cmd); err != nil {
			return fmt.Errorf("tor control %s: %w", strings.Fields(cmd)[0], err)
		}
		if _, _, err := conn.ReadResponse(250); err != nil {
			return fmt.Errorf("tor control %s: %w", strings.Fields(cmd)[0], err)
		}
	}
	return nil
}
