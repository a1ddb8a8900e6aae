package sandbox

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const tlsModuleName = "streamsift_ssl"

// The extraction tool's import-time compatibility checks touch a handful of
// secure-transport attributes before any request is made. Real transport
// happens host-side through the relay, so this module only has to make
// attribute access succeed: context objects are opaque handles, the
// protocol constant is a plausible version number, and no cryptographic
// work happens anywhere.
const tlsProtocolVersion = 0x0304 // TLS 1.3

var tlsHandleSeq atomic.Uint32

func instantiateTLSStub(ctx context.Context, wz wazero.Runtime) error {
	_, err := wz.NewHostModuleBuilder(tlsModuleName).
		NewFunctionBuilder().
		WithFunc(func(context.Context) uint32 { return tlsProtocolVersion }).
		Export("protocol_version").
		NewFunctionBuilder().
		WithFunc(func(context.Context) uint32 { return tlsHandleSeq.Add(1) }).
		Export("context_new").
		NewFunctionBuilder().
		WithFunc(func(context.Context, uint32) {}).
		Export("context_free").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module) uint64 {
			return writeGuestBytes(ctx, m, []byte("TLSv1.3"))
		}).
		Export("version_string").
		NewFunctionBuilder().
		WithFunc(func(context.Context, uint32) uint32 { return 0 }).
		Export("last_error").
		Instantiate(ctx)
	return err
}
