package ip

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ClientOptions configures a Client's connection-reuse policy and
// timeouts, following the functional-option-struct convention used
// elsewhere in this module.
type ClientOptions struct {
	// UsePersistentConnections keeps the verified default connection
	// open across operations instead of dialing fresh each time.
	// Defaults to false.
	UsePersistentConnections bool

	// SubscriptionsUseSameConnection multiplexes event frames over the
	// default connection instead of opening a dedicated subscription
	// connection. Defaults to false.
	SubscriptionsUseSameConnection bool

	// ConnectTimeout bounds TCP dial time. Zero means no timeout.
	ConnectTimeout time.Duration

	// RequestTimeout bounds one HTTP request/response round trip. Zero
	// means no timeout.
	RequestTimeout time.Duration

	// Logger receives structured debug/info/warn/error logs for every
	// protocol step. A default logrus.Logger is used if nil.
	Logger *logrus.Logger
}

func (o ClientOptions) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.New()
}
