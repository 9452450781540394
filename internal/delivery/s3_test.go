package delivery

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

type fakePutObject struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutObject) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Transport_Send(t *testing.T) {
	fake := &fakePutObject{}
	tr := NewS3TransportWithClient(fake, "telemetry", "raw")

	p := samplePayload(t)
	require.NoError(t, tr.Send(context.Background(), p))

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "telemetry", aws.ToString(in.Bucket))
	assert.Equal(t, ObjectKey("raw", p), aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, p.ResponseID, decodePayload(t, fake.bodies[0]).ResponseID)
}

func TestS3Transport_PutFailure(t *testing.T) {
	tr := NewS3TransportWithClient(&fakePutObject{err: errors.New("access denied")}, "telemetry", "")

	err := tr.Send(context.Background(), samplePayload(t))
	require.Error(t, err)
	assert.Equal(t, beaconerrors.CodeTransportFailed, beaconerrors.GetCode(err))
	assert.Contains(t, err.Error(), "s3://telemetry/")
}

func TestNewS3Transport_RequiresBucket(t *testing.T) {
	_, err := NewS3Transport(context.Background(), S3Options{})
	assert.Error(t, err)
}
