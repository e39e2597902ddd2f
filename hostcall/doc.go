/*
Package hostcall bridges mock requests and the Tarmac httpclient host
capability.

Encode drains a mock request and produces the protobuf HTTPClient payload a
WebAssembly guest sends to its host. Decode goes the other way, turning a
captured payload back into a mock request whose body can be streamed by the
code under test. Client.Forward sends a mock request through a waPC host call
and returns the host's response.

	client, err := hostcall.New(hostcall.Config{})
	if err != nil {
		return err
	}
	resp, err := client.Forward(req)

HostCall defaults to wapc.HostCall. Tests inject hostmock.Mock.HostCall (or any
function with the same signature) instead.
*/
package hostcall
