package model

// LaunchSettings are the user-tunable parts of a game launch.
type LaunchSettings struct {
	MemoryMB  int
	ExtraArgs []string
}
