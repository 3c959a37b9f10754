// Package ratelimit is the portal's request rate limiter extension.
//
// Limits use the familiar "N per unit" grammar ("5 per minute; 100/hour").
// Fixed windows are counted in a Storage (bounded in-process LRU or Redis);
// the token-bucket strategy keeps per-key x/time/rate limiters in memory.
package ratelimit
