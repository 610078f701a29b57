// Package tensorflow imports TensorFlow GraphDef models.
//
// A GraphDef is read from either of its on-disk encodings (protobuf binary or protobuf text)
// through one message schema, so both yield the same Go values. BuildGraph turns the node
// definitions into a graph of *Node values that the optimizer rewrites in place.
//
// Example:
//
//	def, err := tensorflow.ParseFile("model.pb")
//	if err != nil {
//	    return err
//	}
//	g, err := tensorflow.BuildGraph(def)
package tensorflow
