// Package daemonrun assembles the mediaflow runtime from configuration and
// hosts the daemon process loop shared by mediaflowd and `mediaflow daemon`.
package daemonrun
