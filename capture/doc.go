/*
Package capture discovers capturable network interfaces and reads live
traffic from one of them through libpcap, or on linux through an mmaped
AF_PACKET socket (EngineRawSocket).

An Enumerator lists interfaces, trying the operating system first and
libpcap second. A Session is bound to one interface and one protocol filter;
Next blocks until a frame carrying network-layer addresses arrives and turns
it into a model.PacketRecord. Close may be called from any goroutine and
makes a pending Next return consts.ErrEndOfStream.

example:

	enumerator := capture.NewEnumerator(capture.EnumeratorConfig{Timeout: 5 * time.Second})
	ifaces := enumerator.ListInterfaces()

	sess, err := capture.Open(ifaces[0], model.ProtocolTCP, capture.Options{})
	if err != nil {
		// errors.Is(err, consts.ErrPrivilegeDenied) ...
	}
	defer sess.Close()

	for {
		rec, err := sess.Next()
		if err != nil {
			break
		}
		fmt.Println(rec)
	}
*/
package capture
