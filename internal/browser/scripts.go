package browser

// jsHelpers is the in-page library every evaluated expression carries. It
// mirrors the Go side's structural addressing: frAbsXPath produces exactly
// the /html[1]/body[1]/div[2] paths that locator.AbsoluteXPath emits, and
// frWalk consumes them, so an element matched offline can be re-addressed in
// the live page.
const jsHelpers = `
function frDoc(framePath) {
	var w = window;
	for (var i = 0; i < framePath.length; i++) {
		w = w.frames[framePath[i]];
	}
	return w.document;
}

function frAbsXPath(el) {
	var parts = [];
	var node = el;
	while (node && node.nodeType === 1) {
		var tag = node.tagName.toLowerCase();
		var index = 1;
		var sib = node.previousElementSibling;
		while (sib) {
			if (sib.tagName === node.tagName) index++;
			sib = sib.previousElementSibling;
		}
		parts.unshift(tag + '[' + index + ']');
		node = node.parentElement;
	}
	return '/' + parts.join('/');
}

function frWalk(scope, xpath) {
	var segs = xpath.split('/').filter(function(s) { return s.length > 0; });
	if (scope.nodeType === 11) {
		// Shadow fragments parse under an html/body wrapper offline; the
		// live shadow root's children are the wrapper body's children.
		while (segs.length > 0 && (segs[0] === 'html[1]' || segs[0] === 'body[1]')) {
			segs.shift();
		}
		if (segs.length === 0) return null;
		return frDescend(scope, segs);
	}
	// Document scope: the first segment addresses documentElement.
	if (segs.length === 0 || segs[0].indexOf('html[') !== 0) return null;
	segs.shift();
	if (segs.length === 0) return scope.documentElement;
	return frDescend(scope.documentElement, segs);
}

function frDescend(node, segs) {
	var current = node;
	for (var i = 0; i < segs.length; i++) {
		var m = segs[i].match(/^([a-zA-Z0-9-]+)\[(\d+)\]$/);
		if (!m) return null;
		var tag = m[1].toUpperCase();
		var want = parseInt(m[2], 10);
		var seen = 0;
		var next = null;
		var kids = current.children;
		for (var j = 0; j < kids.length; j++) {
			if (kids[j].tagName === tag) {
				seen++;
				if (seen === want) { next = kids[j]; break; }
			}
		}
		if (!next) return null;
		current = next;
	}
	return current;
}

function frResolve(doc, shadowHosts, xpath) {
	var scope = doc;
	for (var i = 0; i < shadowHosts.length; i++) {
		var host = frWalk(scope, shadowHosts[i]);
		if (!host || !host.shadowRoot) return null;
		scope = host.shadowRoot;
	}
	return frWalk(scope, xpath);
}

function frIsToggle(el) {
	if (el.tagName !== 'INPUT') return false;
	var t = (el.getAttribute('type') || '').toLowerCase();
	return t === 'checkbox' || t === 'radio';
}

function frSnapshot(doc) {
	var hidden = [];
	var shadows = [];
	var walk = function(el) {
		var view = el.ownerDocument.defaultView;
		if (view) {
			var st = view.getComputedStyle(el);
			// Checkbox and radio inputs are routinely hidden behind styled
			// replacements; only display:none counts against them.
			var toggle = frIsToggle(el);
			var styledAway = !toggle && (st.visibility === 'hidden' ||
				parseFloat(st.opacity) === 0 ||
				(el.offsetWidth === 0 && el.offsetHeight === 0));
			if (st.display === 'none' || styledAway) {
				hidden.push(frAbsXPath(el));
			}
		}
		if (el.shadowRoot) {
			shadows.push({ host: frAbsXPath(el), html: el.shadowRoot.innerHTML });
		}
		for (var i = 0; i < el.children.length; i++) walk(el.children[i]);
	};
	if (doc.documentElement) walk(doc.documentElement);
	return JSON.stringify({
		html: doc.documentElement ? doc.documentElement.outerHTML : '',
		hidden: hidden,
		shadows: shadows
	});
}

function frFrameCount(doc) {
	var n = 0;
	var w = doc.defaultView;
	for (var i = 0; i < w.frames.length; i++) {
		try {
			if (w.frames[i].document) n++;
		} catch (e) {
			// Cross-origin frames are separate worlds; skip them.
		}
	}
	return n;
}

function frClick(el, offsetX, offsetY, hasOffset) {
	el.scrollIntoView({ block: 'center', inline: 'center' });
	var rect = el.getBoundingClientRect();
	var cx = hasOffset ? rect.left + offsetX : rect.left + rect.width / 2;
	var cy = hasOffset ? rect.top + offsetY : rect.top + rect.height / 2;
	var opts = { bubbles: true, cancelable: true, composed: true, clientX: cx, clientY: cy, view: el.ownerDocument.defaultView };
	if (window.PointerEvent) {
		el.dispatchEvent(new PointerEvent('pointerdown', opts));
	}
	el.dispatchEvent(new MouseEvent('mousedown', opts));
	if (window.PointerEvent) {
		el.dispatchEvent(new PointerEvent('pointerup', opts));
	}
	el.dispatchEvent(new MouseEvent('mouseup', opts));
	el.click();
	el.dispatchEvent(new MouseEvent('click', opts));
}

function frSetValue(el, value) {
	el.focus();
	if (frIsToggle(el)) {
		var want = value === 'true' || value === 'on' || value === el.value;
		if (el.checked !== want) {
			el.click();
		}
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return;
	}
	if (el.isContentEditable) {
		el.textContent = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.blur();
		return;
	}
	var proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype :
		el.tagName === 'SELECT' ? HTMLSelectElement.prototype : HTMLInputElement.prototype;
	var desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) {
		desc.set.call(el, value);
	} else {
		el.value = value;
	}
	var kopts = { bubbles: true, cancelable: true };
	el.dispatchEvent(new KeyboardEvent('keydown', kopts));
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new KeyboardEvent('keyup', kopts));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
}

function frCaptureState(el, styleProps, attrNames) {
	var rect = el.getBoundingClientRect();
	var st = el.ownerDocument.defaultView.getComputedStyle(el);
	var styles = {};
	for (var i = 0; i < styleProps.length; i++) {
		styles[styleProps[i]] = st.getPropertyValue(styleProps[i]);
	}
	var attrs = {};
	for (var j = 0; j < attrNames.length; j++) {
		var v = el.getAttribute(attrNames[j]);
		if (v !== null) attrs[attrNames[j]] = v;
	}
	var text = (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
	return JSON.stringify({
		box: { x: Math.round(rect.left), y: Math.round(rect.top),
			width: Math.round(rect.width), height: Math.round(rect.height) },
		styles: styles,
		attrs: attrs,
		text: text
	});
}
`
