/*
Package slave wires the local token verification path a datanode
analogue needs: a key registry kept current by periodically pulling
snapshots from a master, with no round-trip to the master on the hot
verification path. Before the first successful Refresh, the registry
holds no keys and every CheckAccess call fails closed.
*/
package slave
