package delivery

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// IngestMethod is the unary collector RPC. The request is a
// google.protobuf.Struct mirroring the JSON payload.
const IngestMethod = "/beacon.collector.v1.Collector/Ingest"

// GRPCTransport sends batches as unary RPCs.
type GRPCTransport struct {
	conn *grpc.ClientConn
}

// NewGRPCTransport dials target lazily. Extra options are appended after the
// credentials option.
func NewGRPCTransport(target string, plaintext bool, opts ...grpc.DialOption) (*GRPCTransport, error) {
	if target == "" {
		return nil, fmt.Errorf("delivery: grpc target is empty")
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCTransport{conn: conn}, nil
}

// Send invokes Ingest once.
func (t *GRPCTransport) Send(ctx context.Context, p *Payload) error {
	req, err := payloadStruct(p)
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeEncodeFailed, "failed to encode batch", err)
	}
	if err := t.conn.Invoke(ctx, IngestMethod, req, &emptypb.Empty{}); err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed, "collector rpc failed", err)
	}
	return nil
}

// Close tears down the connection.
func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}

// payloadStruct converts p through its JSON form so the Struct carries the
// same field names the HTTP collector receives.
func payloadStruct(p *Payload) (*structpb.Struct, error) {
	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
