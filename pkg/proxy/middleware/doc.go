// Package middleware provides the HTTP middleware that runs inside the
// recorder.
//
// # Middleware Chain
//
//	handler = Recorder(RealIP(Recovery(CORS(router))))
//
// The recorder is outermost so it observes everything the inner layers
// write, including recovery's 500 body and CORS preflight answers. RealIP
// is only installed when server.trust_proxy is set.
//
// # CORS
//
// CORSMiddleware echoes allowed origins back and can allow credentials
// for any origin:
//
//	server:
//	  cors:
//	    enabled: true
//	    allowed_origins: ["*"]
//	    allow_credentials: true
//
// # Recovery
//
// RecoveryMiddleware converts handler panics into a JSON 500:
//
//	{
//	  "error": {
//	    "message": "An internal error occurred. Please try again later.",
//	    "type": "server_error"
//	  }
//	}
//
// The stack trace is logged, never returned. http.ErrAbortHandler is
// re-raised.
package middleware
