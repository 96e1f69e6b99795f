// Package config loads dispatcher configuration from YAML with
// environment overrides.
//
//	naming:
//	  strategy: kebab
//	events:
//	  mode: concurrent
//	behaviors:
//	  timeout: 5s
//	  retry:
//	    enabled: true
//	    policy: exponential
//	  cache:
//	    enabled: true
//	    backend: redis
//	    redis:
//	      addr: localhost:6379
//
// Every field can be overridden from the environment, e.g.
// MMATE_DISPATCH_EVENTS_MODE=concurrent or
// MMATE_DISPATCH_BEHAVIORS_CACHE_REDIS_ADDR=redis:6379.
package config
