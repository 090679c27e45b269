package refresh

import "context"

// Navigator receives the request to show the login surface after a terminal refresh
// failure. Routing belongs to the caller.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string)

func (f NavigatorFunc) Navigate(ctx context.Context, target string) {
	if f != nil {
		f(ctx, target)
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, string) {}
