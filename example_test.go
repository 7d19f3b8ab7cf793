package workerservice_test

import (
	"context"
	"fmt"
	"io"

	workerservice "github.com/bft-labs/workerservice"
	"github.com/bft-labs/workerservice/pkg/host"
)

func Example() {
	m := workerservice.New(
		host.WithConfigDir("/nonexistent"),
		host.WithLogOutput(io.Discard),
	)
	if err := m.Initialize(nil); err != nil {
		fmt.Println(err)
		return
	}

	err := m.RegisterPeriodic("once", func(bc workerservice.BuildContext) (workerservice.Unit, error) {
		return workerservice.Funcs{
			TickFunc: func(ctx context.Context) error {
				m.Shutdown()
				return nil
			},
		}, nil
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(m.Run())
	// Output: <nil>
}
