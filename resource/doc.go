// Package resource provides typed CRUD access to the admin API collections
// (/products, /blogs, /leads, /users) on top of a [sprada.Client].
//
// Every call goes through the client, so authentication, silent refresh and error
// normalization apply unchanged: failures are *sprada.RequestError values.
package resource
