package meshcore

// EncodeGetContacts encodes a contact table request
func EncodeGetContacts() []byte {
	return []byte{CmdGetContacts}
}

// EncodeLogin encodes a repeater admin login command
func EncodeLogin(key PublicKey, password string) []byte {
	payload := make([]byte, 0, 1+32+len(password))
	payload = append(payload, CmdSendLogin)
	payload = append(payload, key[:]...)
	payload = append(payload, password...)
	return payload
}

// EncodeStatusRequest encodes a repeater status request
func EncodeStatusRequest(key PublicKey) []byte {
	payload := make([]byte, 0, 1+32)
	payload = append(payload, CmdStatusRequest)
	payload = append(payload, key[:]...)
	return payload
}

// EncodeSetPath encodes a route path override for a contact
func EncodeSetPath(key PublicKey, path []byte) []byte {
	payload := make([]byte, 0, 1+32+1+len(path))
	payload = append(payload, CmdSetPath)
	payload = append(payload, key[:]...)
	payload = append(payload, byte(len(path)))
	payload = append(payload, path...)
	return payload
}

// EncodeResetPath encodes a reset back to flood routing
func EncodeResetPath(key PublicKey) []byte {
	payload := make([]byte, 0, 1+32)
	payload = append(payload, CmdResetPath)
	payload = append(payload, key[:]...)
	return payload
}
