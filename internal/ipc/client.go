package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Track searches the catalog and opens a selection session for user.
func (c *Client) Track(user, title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "Track", TrackRequest{User: user, Title: title})
}

// Select picks entry index (1-based) from user's pending search.
func (c *Client) Select(user string, index int) (*CommandResponse, error) {
	return call[CommandResponse](c, "Select", SelectRequest{User: user, Index: index})
}

// Untrack removes a uniquely matching series or opens a removal session.
func (c *Client) Untrack(user, title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "Untrack", UntrackRequest{User: user, Title: title})
}

// ConfirmRemove removes candidate index (1-based) from user's pending removal.
func (c *Client) ConfirmRemove(user string, index int) (*CommandResponse, error) {
	return call[CommandResponse](c, "ConfirmRemove", ConfirmRemoveRequest{User: user, Index: index})
}

// List returns all tracked series.
func (c *Client) List() (*CommandResponse, error) {
	return call[CommandResponse](c, "List", ListRequest{})
}

// Latest reports the stored latest chapter of the first matching series.
func (c *Client) Latest(title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "Latest", TitleRequest{Title: title})
}

// Search queries the catalog without opening a session.
func (c *Client) Search(title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "Search", TitleRequest{Title: title})
}

// Info fetches catalog metadata for the first matching tracked series.
func (c *Client) Info(title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "Info", TitleRequest{Title: title})
}

// MarkRead marks the current chapter of the first matching series as read.
func (c *Client) MarkRead(title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "MarkRead", TitleRequest{Title: title})
}

// SetScraper attaches a secondary source to the first matching series.
func (c *Client) SetScraper(req SetScraperRequest) (*CommandResponse, error) {
	return call[CommandResponse](c, "SetScraper", req)
}

// ClearScraper removes the secondary source of the first matching series.
func (c *Client) ClearScraper(title string) (*CommandResponse, error) {
	return call[CommandResponse](c, "ClearScraper", TitleRequest{Title: title})
}

// Recheck runs a manual reconciliation cycle.
func (c *Client) Recheck() (*RecheckResponse, error) {
	return call[RecheckResponse](c, "Recheck", RecheckRequest{})
}

// History returns delivered updates and optionally cycles.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", req)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// TestNotification triggers a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}
