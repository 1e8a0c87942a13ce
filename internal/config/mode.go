package config

// Mode represents how the relay drives its file descriptors
type Mode string

const (
	// ModePoll puts descriptors in non-blocking mode and waits with poll(2)
	ModePoll Mode = "poll"

	// ModeBlocking leaves descriptors in blocking mode
	ModeBlocking Mode = "blocking"
)

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	return m == ModePoll || m == ModeBlocking
}

// String returns the string representation
func (m Mode) String() string {
	return string(m)
}

// Blocking reports whether descriptors stay in blocking mode
func (m Mode) Blocking() bool {
	return m == ModeBlocking
}
