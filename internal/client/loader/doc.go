/*
Package loader loads remote UI components on demand.

Load fetches the catalog entry for an id, resolves its module URL for the
host context (extension://<id>/<main> when embedded, /<prefix>/<id>/<main>
in a browser), fetches the source and evaluates it in a dedicated goja
runtime. Modules follow a federation-style contract: they export a get
function, and get("./Component") yields a factory for the component.

	module.exports.get = function (name) {
		return Promise.resolve(function () {
			var ui = require("ui");
			return { default: function (props) { return ui.h("div", props); } };
		});
	};

Shared libraries are injected through Options.Shared and reached by
require; nothing is installed as a process-wide global.

A component whose object carries a capability function implements
component.Activatable. Its capability is registered in the Registry, then
described once and activated, which runs the described initialize hook.

Load never returns an error. Unknown, disabled and broken components, and
any failure along the way, yield nil plus a log entry; disabled components
are evicted from the registry.
*/
package loader
