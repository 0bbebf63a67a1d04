package finality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

// ReceivePath is the endpoint a node accepts finalized transactions on.
const ReceivePath = "/api/yo/receive"

// HTTPDistributor posts finalized transactions to the recipient's node as
// listed in the network map.
type HTTPDistributor struct {
	network *network.Map
	client  *http.Client
}

// NewHTTPDistributor creates a distributor. A nil httpClient gets a traced
// default.
func NewHTTPDistributor(m *network.Map, httpClient *http.Client) *HTTPDistributor {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPDistributor{network: m, client: httpClient}
}

// Deliver implements Distributor.
func (d *HTTPDistributor) Deliver(ctx context.Context, to types.Party, stx *types.SignedBundle) error {
	node, err := d.network.NodeForParty(to)
	if err != nil {
		return err
	}
	if node.Address == "" {
		return fmt.Errorf("no address known for %s", to.Name)
	}

	body, err := json.Marshal(stx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	url := strings.TrimSuffix(node.Address, "/") + ReceivePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s answered %d: %s", to.Name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
