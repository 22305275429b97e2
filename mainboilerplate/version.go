package mainboilerplate

// Version and BuildDate of the binary, set at link time with
// -ldflags "-X go.gazette.dev/sqlkv/mainboilerplate.Version=...".
var (
	Version   = "development"
	BuildDate = "unknown"
)
