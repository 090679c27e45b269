package goAuthClient

import "github.com/MrEthical07/goAuthClient/refresh"

// Navigator is asked to show the login surface once per terminal refresh failure.
type Navigator = refresh.Navigator

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc = refresh.NavigatorFunc
