// Package server holds the composed HTTP application: one gin engine
// carrying the realtime endpoint, the cross-origin filter, the feature
// modules and the diagnostic endpoints, plus the http.Server that serves it.
//
// Modules contribute routes through the Module contract:
//
//	server.Module{
//	    Name:   "events",
//	    Prefix: "/api/events",
//	    Register: func(r *gin.RouterGroup, deps *server.Deps) error {
//	        r.GET("", list)
//	        return nil
//	    },
//	}
//
// Each module receives the shared handles in Deps; nothing is looked up
// from globals.
package server
