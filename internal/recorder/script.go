package recorder

// captureScript is injected into the recorded page. It buffers raw
// interaction events; the Go side drains the buffer on a short ticker and
// turns each raw event into a full replay step. Element addressing uses the
// same structural XPath scheme the replay side resolves with, shadow DOM
// hops listed host by host.
func captureScript() string {
	return `
(function() {
	if (window.__flowRecorder) return;

	function absXPath(el) {
		var parts = [];
		var node = el;
		while (node && node.nodeType === 1) {
			var index = 1;
			var sib = node.previousElementSibling;
			while (sib) {
				if (sib.tagName === node.tagName) index++;
				sib = sib.previousElementSibling;
			}
			parts.unshift(node.tagName.toLowerCase() + '[' + index + ']');
			node = node.parentElement;
		}
		return '/' + parts.join('/');
	}

	function address(event) {
		var path = event.composedPath ? event.composedPath() : [event.target];
		var target = path[0];
		if (!target || target.nodeType !== 1) target = event.target;
		var hosts = [];
		var node = target;
		while (node) {
			var root = node.getRootNode ? node.getRootNode() : document;
			if (root instanceof ShadowRoot) {
				hosts.unshift(absXPath(root.host));
				node = root.host;
			} else {
				break;
			}
		}
		return { target: target, xpath: absXPath(target), shadowPath: hosts };
	}

	window.__flowRecorder = {
		events: [],
		recording: true,

		push: function(e) {
			if (this.recording) this.events.push(e);
		},

		drain: function() {
			var events = this.events.slice();
			this.events = [];
			return events;
		}
	};

	document.addEventListener('click', function(event) {
		var a = address(event);
		var rect = a.target.getBoundingClientRect();
		window.__flowRecorder.push({
			type: 'click',
			xpath: a.xpath,
			shadow_path: a.shadowPath,
			offset: { x: event.clientX - rect.left, y: event.clientY - rect.top },
			page_url: location.href,
			timestamp: Date.now()
		});
	}, true);

	document.addEventListener('change', function(event) {
		var a = address(event);
		var el = a.target;
		var value = '';
		if (el.tagName === 'INPUT' && (el.type === 'checkbox' || el.type === 'radio')) {
			value = el.checked ? 'true' : 'false';
		} else if ('value' in el) {
			value = el.value;
		} else if (el.isContentEditable) {
			value = el.textContent;
		}
		window.__flowRecorder.push({
			type: 'input',
			xpath: a.xpath,
			shadow_path: a.shadowPath,
			value: value,
			page_url: location.href,
			timestamp: Date.now()
		});
	}, true);

	var scrollTimer = null;
	window.addEventListener('scroll', function() {
		if (scrollTimer) clearTimeout(scrollTimer);
		scrollTimer = setTimeout(function() {
			window.__flowRecorder.push({
				type: 'scroll',
				value: JSON.stringify({ x: window.scrollX, y: window.scrollY }),
				page_url: location.href,
				timestamp: Date.now()
			});
		}, 250);
	}, true);
})();
`
}
