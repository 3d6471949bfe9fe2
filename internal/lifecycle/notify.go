package lifecycle

import (
	"context"
	"net"
	"time"
)

const restartMessage = "restart\n"

// RestartNotifier tells the order service, over its control socket, that the
// run continues with preserved data.
type RestartNotifier struct {
	addr   string
	dialer net.Dialer
}

func NewRestartNotifier(addr string) *RestartNotifier {
	return &RestartNotifier{addr: addr, dialer: net.Dialer{Timeout: 2 * time.Second}}
}

func (n *RestartNotifier) Notify(ctx context.Context) error {
	conn, err := n.dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	_, err = conn.Write([]byte(restartMessage))
	return err
}
