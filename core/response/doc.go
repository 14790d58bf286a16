// Package response writes the gateway's JSON responses and defines its
// error vocabulary.
//
// Every error body has the same shape regardless of which component failed:
//
//	{
//	  "errorCode": "AUTH_ERROR",
//	  "message": "authentication failed",
//	  "requestId": "f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
//	  "timestamp": "2025-11-03T10:15:30Z"
//	}
//
// Handlers return or pass an HTTPError and let Error render it:
//
//	if err := svc.Authenticate(ctx, creds); err != nil {
//		response.Error(w, requestID, response.ErrAuthentication)
//		return
//	}
//
// Unknown error values render as a redacted 500 so internal details never
// reach vendors.
package response
