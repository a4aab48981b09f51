package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// InstrumentClient writes every request/response pair the client makes to
// output, numbered in the order the responses arrive. a nil output is a no-op.
func InstrumentClient(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&counter, 1)
		output.Write(
			fmt.Sprintf("%04d_%s", id, res.Request.Method),
			formatHttpMessage(res),
		)
		return nil
	})
}
