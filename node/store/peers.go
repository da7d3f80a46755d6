package store

// Peers persists known endpoints between runs so the node does not cold
// start from bootstrap peers alone. Endpoints are opaque "host:port"
// strings here; dialing them is the transport's concern.

func (t *Txn) PeerPut(endpoint string) error {
	return t.bucket(bucketPeers).Put([]byte(endpoint), []byte{})
}

func (t *Txn) PeerExists(endpoint string) bool {
	return t.bucket(bucketPeers).Get([]byte(endpoint)) != nil
}

func (t *Txn) PeerDel(endpoint string) error {
	return t.bucket(bucketPeers).Delete([]byte(endpoint))
}

func (t *Txn) PeerCount() uint64 {
	return count(t, bucketPeers)
}

func (t *Txn) PeerIterate(fn func(string) bool) {
	c := t.bucket(bucketPeers).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if !fn(string(k)) {
			return
		}
	}
}
